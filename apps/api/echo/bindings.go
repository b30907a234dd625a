package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/luna-app/luna/core"
)

const orderingParam = "ordering"

// bindOrdering reads `?ordering=name,-created_at` (the param may also repeat).
// A leading "-" sorts descending. Later mentions of a field already seen are ignored.
// The services drop fields they cannot sort on.
func bindOrdering(ctx echo.Context) []core.DBOrdering {
	var orderings []core.DBOrdering
	seen := make(map[string]bool)
	for _, val := range ctx.QueryParams()[orderingParam] {
		for _, field := range strings.Split(val, ",") {
			field = strings.ToLower(strings.TrimSpace(field))
			descending := strings.HasPrefix(field, "-")
			field = strings.TrimPrefix(field, "-")
			if field == "" || seen[field] {
				continue
			}
			seen[field] = true
			orderings = append(orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
	return orderings
}
