package models

type ChannelType int

const (
	ChannelTypeText  ChannelType = 0
	ChannelTypeVoice ChannelType = 2
)

type Channel struct {
	ID         int64       `json:"id,string"`
	ServerID   int64       `json:"server_id,string"`
	CategoryID *int64      `json:"category_id,string,omitempty"`
	Name       string      `json:"name"`
	Type       ChannelType `json:"type"`
	Position   int64       `json:"position"`
	IsDeleted  bool        `json:"is_deleted"`
}
