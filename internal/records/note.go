package records

import "github.com/smallbiznis/authr/internal/storage"

type Note struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OwnerID  int64  `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Contents string `gorm:"column:contents;type:text;not null" json:"contents"`
}

// TableName sets the database table name.
func (Note) TableName() string { return "notes" }

var noteSchema = storage.Schema{
	Table:    "notes",
	IDColumn: "id",
	Columns: []storage.Column{
		{Name: "owner_id", Type: storage.Integer},
		{Name: "contents", Type: storage.Text},
	},
}

func (Note) Schema() storage.Schema { return noteSchema }

func (n Note) RecordID() int64 { return n.ID }

func (n Note) Values() map[string]any {
	return map[string]any{
		"owner_id": n.OwnerID,
		"contents": n.Contents,
	}
}

type NoteRequest struct {
	ID       *int64  `json:"id,omitempty"`
	OwnerID  *int64  `json:"owner_id,omitempty" validate:"required"`
	Contents *string `json:"contents,omitempty" validate:"required"`
}

func (r *NoteRequest) TargetID() (int64, bool) {
	if r.ID == nil {
		return 0, false
	}
	return *r.ID, true
}

func (r *NoteRequest) Changes() map[string]any {
	out := make(map[string]any, 2)
	if r.OwnerID != nil {
		out["owner_id"] = *r.OwnerID
	}
	if r.Contents != nil {
		out["contents"] = *r.Contents
	}
	return out
}

func (r *NoteRequest) Build(id int64) Note {
	return r.Apply(Note{ID: id})
}

func (r *NoteRequest) Apply(n Note) Note {
	if r.OwnerID != nil {
		n.OwnerID = *r.OwnerID
	}
	if r.Contents != nil {
		n.Contents = *r.Contents
	}
	return n
}

var _ storage.Request[Note] = (*NoteRequest)(nil)
