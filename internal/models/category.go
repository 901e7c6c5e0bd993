package models

type Category struct {
	ID       int64  `json:"id,string"`
	ServerID int64  `json:"server_id,string"`
	Name     string `json:"name"`
	Position int64  `json:"position"`
}
