package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Huaoe/ElurcFleet/internal/domain"
)

// EncodeMetadata renders audit metadata for a JSONB column.
func EncodeMetadata(m domain.Metadata) ([]byte, error) {
	if m == nil {
		m = domain.Metadata{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}

func DecodeMetadata(b []byte) (domain.Metadata, error) {
	m := domain.Metadata{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func UTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
