package model

import "strings"

// TempPrefix is the reserved namespace for locally generated ids. Server ids
// never start with it.
const TempPrefix = "temp_"

// IsTempID reports whether id was generated locally and is still pending.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}
