package groups

// Group is a named partition of users. Members join by quoting the short
// join code; the group carries no computation of its own and exists as a
// filter key and display name for scoped rankings.
type Group struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Name             string `gorm:"column:name;size:190;not null" json:"name"`
	JoinCode         string `gorm:"column:join_code;size:8;not null" json:"-"`
	CreatedBy        string `gorm:"column:created_by;size:190;not null" json:"created_by"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null" json:"created_at_s"`
	UpdatedBy        string `gorm:"column:updated_by;size:190" json:"updated_by,omitempty"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s" json:"updated_at_s,omitempty"`
}

// TableName exposes the table backing groups.
func (Group) TableName() string {
	return "groups"
}
