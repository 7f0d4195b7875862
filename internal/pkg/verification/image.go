package verification

import (
	"fmt"
	"path"
	"strings"
)

// Formats accepted by vision models. SVG is excluded since it is scriptable.
var allowedImageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func validateImageKey(key string) error {
	ext := strings.ToLower(path.Ext(key))
	if !allowedImageExt[ext] {
		return fmt.Errorf("%w: %s is not a supported image (jpg, jpeg, png, gif, webp)", ErrInvalidInput, path.Base(key))
	}
	return nil
}
