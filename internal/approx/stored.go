package approx

import (
	"encoding/json"
	"fmt"

	"github.com/Kartikesh07/RailSetuBackend/internal/models"
)

// Marshal encodes a fitted Forest for storage
func Marshal(m *Forest) ([]byte, error) {
	p, err := m.Params()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	return data, nil
}

// FromStored rebuilds a Forest from a stored model row
func FromStored(sm *models.StoredModel) (*Forest, error) {
	var p Params
	if err := json.Unmarshal(sm.Params, &p); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", sm.ID, err)
	}
	m, err := FromParams(p)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", sm.ID, err)
	}
	return m, nil
}
