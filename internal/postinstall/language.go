package postinstall

import (
	"fmt"
	"os"

	"github.com/FyraLabs/readymade/internal/errs"
)

// Language writes /etc/locale.conf with LANG, LANGUAGE and LC_MESSAGES all
// set to the selected locale tag.
type Language struct{}

func (Language) Name() string { return "Language" }

func (Language) Run(ctx Context) error {
	text := languageConfText(ctx.Locale)
	if err := os.WriteFile("/etc/locale.conf", []byte(text), 0o644); err != nil {
		return errs.Wrap(errs.IO, err, "writing /etc/locale.conf")
	}
	return nil
}

func languageConfText(locale string) string {
	return fmt.Sprintf("LANG=%s\nLANGUAGE=%s\nLC_MESSAGES=%s\n", locale, locale, locale)
}
