package records

import "github.com/smallbiznis/authr/internal/storage"

// User is a locally persisted account, keyed externally by GUID
// ("<provider>/<provider user id>").
type User struct {
	ID      int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	GUID    string `gorm:"column:guid;type:varchar(255);not null;uniqueIndex" json:"guid"`
	Name    string `gorm:"column:name;type:text;not null" json:"name"`
	Email   string `gorm:"column:email;type:text;not null;default:''" json:"email"`
	Picture string `gorm:"column:picture;type:text;not null;default:''" json:"picture"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

var userSchema = storage.Schema{
	Table:    "users",
	IDColumn: "id",
	Columns: []storage.Column{
		{Name: "guid", Type: storage.Text, Unique: true, Immutable: true},
		{Name: "name", Type: storage.Text},
		{Name: "email", Type: storage.Text},
		{Name: "picture", Type: storage.Text},
	},
}

func (User) Schema() storage.Schema { return userSchema }

func (u User) RecordID() int64 { return u.ID }

func (u User) Values() map[string]any {
	return map[string]any{
		"guid":    u.GUID,
		"name":    u.Name,
		"email":   u.Email,
		"picture": u.Picture,
	}
}

// UserRequest is the partial input for creating or updating a User.
type UserRequest struct {
	ID      *int64  `json:"id,omitempty"`
	GUID    *string `json:"guid,omitempty" validate:"required"`
	Name    *string `json:"name,omitempty" validate:"required"`
	Email   *string `json:"email,omitempty"`
	Picture *string `json:"picture,omitempty"`
}

func (r *UserRequest) TargetID() (int64, bool) {
	if r.ID == nil {
		return 0, false
	}
	return *r.ID, true
}

func (r *UserRequest) Changes() map[string]any {
	out := make(map[string]any, 4)
	if r.GUID != nil {
		out["guid"] = *r.GUID
	}
	if r.Name != nil {
		out["name"] = *r.Name
	}
	if r.Email != nil {
		out["email"] = *r.Email
	}
	if r.Picture != nil {
		out["picture"] = *r.Picture
	}
	return out
}

func (r *UserRequest) Build(id int64) User {
	return r.Apply(User{ID: id})
}

func (r *UserRequest) Apply(u User) User {
	if r.GUID != nil {
		u.GUID = *r.GUID
	}
	if r.Name != nil {
		u.Name = *r.Name
	}
	if r.Email != nil {
		u.Email = *r.Email
	}
	if r.Picture != nil {
		u.Picture = *r.Picture
	}
	return u
}

var _ storage.Request[User] = (*UserRequest)(nil)
