package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/buntdb"
)

const (
	buntKeyPrefix = "alert:"
	buntSeqKey    = "seq:alert"
)

var _ Ledger = (*BuntLedger)(nil)

// BuntLedger 嵌入式 kv 账本, key 按递增序号排列
type BuntLedger struct {
	db   *buntdb.DB
	path string
}

// FromBunt path 为 ":memory:" 时只在内存中
func FromBunt(path string) (*BuntLedger, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}
	return &BuntLedger{db: db, path: path}, nil
}

func (l *BuntLedger) Close() error {
	return l.db.Close()
}

func (l *BuntLedger) Append(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return &WriteError{Path: l.path, Err: err}
	}
	err = l.db.Update(func(tx *buntdb.Tx) error {
		seq := 0
		val, err := tx.Get(buntSeqKey)
		switch {
		case err == nil:
			if seq, err = strconv.Atoi(val); err != nil {
				return fmt.Errorf("corrupt sequence %q: %w", val, err)
			}
		case err != buntdb.ErrNotFound:
			return err
		}
		seq++
		if _, _, err = tx.Set(buntSeqKey, strconv.Itoa(seq), nil); err != nil {
			return err
		}
		_, _, err = tx.Set(fmt.Sprintf("%s%020d", buntKeyPrefix, seq), string(data), nil)
		return err
	})
	if err != nil {
		return &WriteError{Path: l.path, Err: err}
	}
	return nil
}

func (l *BuntLedger) DrainForDigest(ctx context.Context) (string, error) {
	var lines []string
	err := l.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(buntKeyPrefix+"*", func(key, value string) bool {
			var e Event
			if err := json.Unmarshal([]byte(value), &e); err != nil {
				// 不是本程序写入的内容原样输出
				slog.Warn("undecodable ledger entry", "key", key, "error", err)
				if raw := strings.TrimSpace(value); raw != "" {
					lines = append(lines, raw)
				}
				return true
			}
			lines = append(lines, e.Line())
			return true
		})
	})
	if err != nil {
		return "", fmt.Errorf("ledger: read %s: %w", l.path, err)
	}
	if len(lines) == 0 {
		return "", ErrEmpty
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// Clear 删除所有告警, 序号保留
func (l *BuntLedger) Clear(ctx context.Context) error {
	return l.db.Update(func(tx *buntdb.Tx) error {
		var keys []string
		if err := tx.AscendKeys(buntKeyPrefix+"*", func(key, _ string) bool {
			keys = append(keys, key)
			return true
		}); err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *BuntLedger) Len(ctx context.Context) (int, error) {
	n := 0
	err := l.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(buntKeyPrefix+"*", func(_, _ string) bool {
			n++
			return true
		})
	})
	return n, err
}
