package presence

import "github.com/cespare/xxhash/v2"

// Palette is the fixed set of user colors.
var Palette = [8]string{
	"#E57373",
	"#64B5F6",
	"#81C784",
	"#FFB74D",
	"#BA68C8",
	"#4DB6AC",
	"#F06292",
	"#A1887F",
}

// ColorFor derives a user's color from the user ID. It is never stored, so
// the same user renders with the same color after a reconnect or a registry
// rebuild.
func ColorFor(userID string) string {
	return Palette[xxhash.Sum64String(userID)%uint64(len(Palette))]
}
