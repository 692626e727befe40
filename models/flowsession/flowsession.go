package flowsession

import (
	"time"

	"gorm.io/datatypes"
)

// FlowSession is the server-side snapshot of one user's progress through
// the order intake flow. The JSON columns hold the phase records and the
// quantities map; the scalar columns are what queries filter on.
//
// A row is keyed either by the login session (SessionKey) or, in resume
// mode, by the order's edit token; both identify the same snapshot shape.
type FlowSession struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionKey string `gorm:"type:varchar(64);not null;uniqueIndex" json:"session_key"`

	Phase           string `gorm:"type:varchar(30);not null" json:"phase"`
	InfoSubmitted   bool   `gorm:"default:false" json:"info_submitted"`
	Phase1Submitted bool   `gorm:"default:false" json:"phase1_submitted"`
	Confirmed       bool   `gorm:"default:false" json:"confirmed"`
	EditMode        bool   `gorm:"default:false" json:"edit_mode"`
	Phase2Enabled   bool   `gorm:"default:false" json:"phase2_enabled"`

	OrderID   string `gorm:"type:varchar(255);index" json:"order_id,omitempty"`
	EditToken string `gorm:"type:varchar(255);index" json:"edit_token,omitempty"`

	UserInfo   datatypes.JSON `gorm:"type:jsonb" json:"user_info"`
	Phase1Data datatypes.JSON `gorm:"type:jsonb" json:"phase1_data,omitempty"`
	Quantities datatypes.JSON `gorm:"type:jsonb" json:"quantities"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
