package commands

// CanUse reports whether user may run def.
func CanUse(user User, def Definition) bool {
	return user.AccessLevel >= def.AccessLevel
}

// CanDiscover reports whether def is listed to user in help and
// completion. It is independent of CanUse: a command can be usable
// before it is listed, or listed without being usable.
func CanDiscover(user User, def Definition) bool {
	return user.AccessLevel >= def.Visibility
}
