package orderflow

import (
	"encoding/json"
	"fmt"

	"catalogue-order/models/flowsession"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store persists controller snapshots between requests, one row per flow
// key. The key is the login session id or, in resume mode, the edit token
// prefixed with "edit:".
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// EditKey builds the flow key for token-resumed flows.
func EditKey(token string) string {
	return "edit:" + token
}

// Load reads the snapshot under key. The second return is false when no
// flow exists yet for this key.
func (s *Store) Load(key string) (Snapshot, bool, error) {
	var row flowsession.FlowSession
	if err := s.DB.Where("session_key = ?", key).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("load flow session: %w", err)
	}

	snap := Snapshot{
		Phase:           Phase(row.Phase),
		InfoSubmitted:   row.InfoSubmitted,
		Phase1Submitted: row.Phase1Submitted,
		Confirmed:       row.Confirmed,
		EditMode:        row.EditMode,
		Phase2Enabled:   row.Phase2Enabled,
		OrderID:         row.OrderID,
		EditToken:       row.EditToken,
		Quantities:      map[string]int{},
		ProductIndex:    map[string]string{},
	}

	if len(row.UserInfo) > 0 {
		if err := json.Unmarshal(row.UserInfo, &snap.UserInfo); err != nil {
			return Snapshot{}, false, fmt.Errorf("decode user info: %w", err)
		}
	}
	if len(row.Phase1Data) > 0 {
		if err := json.Unmarshal(row.Phase1Data, &snap.Phase1Data); err != nil {
			return Snapshot{}, false, fmt.Errorf("decode phase1 data: %w", err)
		}
	}
	if len(row.Quantities) > 0 {
		var stored struct {
			Quantities   map[string]int    `json:"quantities"`
			ProductIndex map[string]string `json:"productIndex"`
		}
		if err := json.Unmarshal(row.Quantities, &stored); err != nil {
			return Snapshot{}, false, fmt.Errorf("decode quantities: %w", err)
		}
		if stored.Quantities != nil {
			snap.Quantities = stored.Quantities
		}
		if stored.ProductIndex != nil {
			snap.ProductIndex = stored.ProductIndex
		}
	}

	return snap, true, nil
}

// Save upserts the snapshot under key.
func (s *Store) Save(key string, snap Snapshot) error {
	userInfo, err := json.Marshal(snap.UserInfo)
	if err != nil {
		return fmt.Errorf("encode user info: %w", err)
	}

	var phase1 []byte
	if snap.Phase1Data != nil {
		phase1, err = json.Marshal(snap.Phase1Data)
		if err != nil {
			return fmt.Errorf("encode phase1 data: %w", err)
		}
	}

	quantities, err := json.Marshal(struct {
		Quantities   map[string]int    `json:"quantities"`
		ProductIndex map[string]string `json:"productIndex"`
	}{snap.Quantities, snap.ProductIndex})
	if err != nil {
		return fmt.Errorf("encode quantities: %w", err)
	}

	row := flowsession.FlowSession{
		SessionKey:      key,
		Phase:           string(snap.Phase),
		InfoSubmitted:   snap.InfoSubmitted,
		Phase1Submitted: snap.Phase1Submitted,
		Confirmed:       snap.Confirmed,
		EditMode:        snap.EditMode,
		Phase2Enabled:   snap.Phase2Enabled,
		OrderID:         snap.OrderID,
		EditToken:       snap.EditToken,
		UserInfo:        datatypes.JSON(userInfo),
		Phase1Data:      datatypes.JSON(phase1),
		Quantities:      datatypes.JSON(quantities),
	}

	// Atomic upsert on the session key; two concurrent first writes must
	// not race past a lookup into a unique-index collision.
	err = s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"phase", "info_submitted", "phase1_submitted", "confirmed",
			"edit_mode", "phase2_enabled", "order_id", "edit_token",
			"user_info", "phase1_data", "quantities", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save flow session: %w", err)
	}
	return nil
}

// Delete removes the snapshot under key ("create another order" discards
// the old flow entirely).
func (s *Store) Delete(key string) error {
	if err := s.DB.Where("session_key = ?", key).Delete(&flowsession.FlowSession{}).Error; err != nil {
		return fmt.Errorf("delete flow session: %w", err)
	}
	return nil
}
