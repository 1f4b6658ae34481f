package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TypeGroups maps file type group names to their associated file extensions.
var TypeGroups = map[string][]string{
	"video": {
		".mp4", ".mkv", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".mpeg", ".mpg",
	},
	"audio": {
		".mp3", ".flac", ".wav", ".aac", ".ogg", ".wma", ".m4a", ".opus", ".aiff", ".alac",
	},
	"image": {
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp", ".svg", ".ico", ".heic", ".heif", ".raw",
	},
	"archive": {
		".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar", ".tgz", ".tbz2",
	},
	"document": {
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".ods", ".odp", ".rtf", ".txt", ".epub",
	},
	"code": {
		".go", ".py", ".js", ".ts", ".java", ".c", ".cpp", ".h", ".hpp", ".rs", ".rb", ".php", ".swift", ".kt", ".scala", ".cs", ".sh", ".bash", ".zsh", ".fish",
	},
	"log": {
		".log", ".logs",
	},
}

// ErrUnknownTypeGroup indicates that a type group name is not in TypeGroups.
var ErrUnknownTypeGroup = errors.New("unknown type group")

// ExpandTypeGroups returns the extensions of the named groups.
// Unlike WithTypeGroups, an unknown name is an error.
func ExpandTypeGroups(groups ...string) ([]string, error) {
	var extensions []string
	for _, group := range groups {
		exts, ok := TypeGroups[strings.ToLower(strings.TrimSpace(group))]
		if !ok {
			return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownTypeGroup, group, strings.Join(TypeGroupNames(), ", "))
		}
		extensions = append(extensions, exts...)
	}
	return extensions, nil
}

// TypeGroupNames returns the sorted names of the known type groups.
func TypeGroupNames() []string {
	names := make([]string, 0, len(TypeGroups))
	for name := range TypeGroups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
