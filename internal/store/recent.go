package store

import "time"

// TouchRecent records that the conversation with receiverID was opened now.
func (db *DB) TouchRecent(receiverID int64, receiverName string) error {
	_, err := db.Exec(`
		INSERT INTO recent_conversations (receiver_id, receiver_name, opened_at)
		VALUES (?, ?, ?)
		ON CONFLICT(receiver_id) DO UPDATE SET
			receiver_name = excluded.receiver_name,
			opened_at = excluded.opened_at`,
		receiverID, receiverName, time.Now().UnixNano())
	return err
}

// ListRecent returns recently opened conversations, newest first.
func (db *DB) ListRecent(limit int) ([]Recent, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT receiver_id, receiver_name, opened_at
		FROM recent_conversations
		ORDER BY opened_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Recent
	for rows.Next() {
		var r Recent
		if err := rows.Scan(&r.ReceiverID, &r.ReceiverName, &r.OpenedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClearRecent forgets every recent conversation. Used on logout.
func (db *DB) ClearRecent() error {
	_, err := db.Exec(`DELETE FROM recent_conversations`)
	return err
}
