package repo

import (
	"context"
	"database/sql"
)

const (
	SettingPlanStartDate = "plan_start_date"
	SettingPlanStatus    = "plan_status"
)

func (r Repo) SetSettingTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO bot_settings(key,value) VALUES (?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (r Repo) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := r.DB.QueryRowContext(ctx, `SELECT value FROM bot_settings WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return v, err
}

func (r Repo) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT key, value FROM bot_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		res[k] = v
	}
	return res, rows.Err()
}
