package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/pmajay/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the comma separated `ordering` param; a "-" prefix sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// ListResponse is the envelope of paginated collections.
type ListResponse struct {
	Data       interface{}   `json:"data"`
	Pagination core.PageInfo `json:"pagination"`
}

// listQuery binds the filter (if any), the ordering and the pagination of a list request.
func listQuery(ctx echo.Context, filter interface{}) ([]core.DBOrdering, core.Pagination, error) {
	if filter != nil {
		if err := ctx.Bind(filter); err != nil {
			return nil, core.Pagination{}, err
		}
	}
	var page core.Pagination
	if err := ctx.Bind(&page); err != nil {
		return nil, core.Pagination{}, err
	}
	page.Clean()

	ordering := new(Ordering)
	ordering.Bind(ctx)
	return ordering.Orderings, page, nil
}

func listResponse(ctx echo.Context, data interface{}, page core.Pagination, total int) error {
	return ctx.JSON(http.StatusOK, ListResponse{Data: data, Pagination: core.NewPageInfo(page, total)})
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
