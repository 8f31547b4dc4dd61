package calendar

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"subcal/internal/core"
)

var (
	supportedLocales = []language.Tag{language.English, language.Korean}
	localeMatcher    = language.NewMatcher(supportedLocales)

	dateLayouts  = []string{"Jan 2, 2006", "2006년 1월 2일"}
	monthLayouts = []string{"January 2006", "2006년 1월"}
)

func localeIndex(tag language.Tag) int {
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No {
		return 0
	}
	return idx
}

// FormatAmount renders amount in code with the grouping and currency scale
// of tag, e.g. "₩17,000" or "$8.50". Unknown codes are printed as "XYZ 1,234.5".
func FormatAmount(amount decimal.Decimal, code string, tag language.Tag) string {
	p := message.NewPrinter(tag)
	code = strings.ToUpper(strings.TrimSpace(code))

	unit, err := currency.ParseISO(code)
	if err != nil {
		return code + " " + p.Sprint(number.Decimal(amount.InexactFloat64()))
	}

	scale, _ := currency.Standard.Rounding(unit)
	f := amount.Round(int32(scale)).InexactFloat64()
	num := p.Sprint(number.Decimal(f, number.Scale(scale)))
	sym := p.Sprint(currency.NarrowSymbol(unit))
	if sym == "" {
		sym = code + " "
	}
	return sym + num
}

// FormatDate renders d for tag, falling back to English.
func FormatDate(d core.Date, tag language.Tag) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayouts[localeIndex(tag)])
}

// FormatMonth renders the month heading for year/month.
func FormatMonth(year, month int, tag language.Tag) string {
	return core.NewDate(year, month, 1).Format(monthLayouts[localeIndex(tag)])
}
