package compare

import (
	"regexp"
	"strings"
)

// requalify rewrites "from." qualifiers in a definition to "to.". Quoted
// qualifiers match exactly; bare ones only where no identifier character
// precedes them.
func requalify(def, from, to string) string {
	if def == "" || from == "" || from == to {
		return def
	}

	def = strings.ReplaceAll(def, `"`+from+`".`, `"`+to+`".`)
	def = strings.ReplaceAll(def, "`"+from+"`.", "`"+to+"`.")

	bare := regexp.MustCompile("(^|[^\\w$.\"`])" + regexp.QuoteMeta(from) + `\.`)
	return bare.ReplaceAllString(def, "${1}"+strings.ReplaceAll(to, "$", "$$")+".")
}
