package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer appends entries to the shared ledger. Every append happens inside
// the caller's transaction so a rolled-back operation leaves no trace.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Payload map[string]any

func (w Writer) Append(ctx context.Context, tx *sql.Tx, entryType string, eventID int64, entity, actor string, payload Payload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ledger payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO ledger(ts,type,event_id,entity,actor,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, entryType, nullableID(eventID), entity, actor, string(data))
	return err
}

func nullableID(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
