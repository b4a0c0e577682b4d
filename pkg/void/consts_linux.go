package void

// nul-terminated strings used by the child between clone and exec,
// prepared ahead of fork since no Go allocation is allowed there
var (
	none  = [...]byte{'n', 'o', 'n', 'e', 0}
	slash = [...]byte{'/', 0}
	empty = [...]byte{0}
)
