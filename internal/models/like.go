package models

// LikeAction selects how a like request changes membership.
type LikeAction int

const (
	LikeToggle LikeAction = iota
	LikeAdd
	LikeRemove
)

func (a LikeAction) String() string {
	switch a {
	case LikeAdd:
		return "like"
	case LikeRemove:
		return "unlike"
	default:
		return "toggle"
	}
}
