package domain

type StockStatus string

const (
	StockOK          StockStatus = "ok"
	StockReduced     StockStatus = "reduced"
	StockUnavailable StockStatus = "unavailable"
)

type StockVerdict struct {
	ProductID string      `json:"product_id"`
	Requested int         `json:"requested"`
	Available int         `json:"available"`
	Status    StockStatus `json:"status"`
}

// Judge classifies a requested quantity against freshly read stock.
// exists=false means the product is gone from the catalog.
func Judge(productID string, requested, available int, exists bool) StockVerdict {
	v := StockVerdict{ProductID: productID, Requested: requested, Available: available}
	switch {
	case !exists || available <= 0:
		v.Available = max(available, 0)
		v.Status = StockUnavailable
	case requested > available:
		v.Status = StockReduced
	default:
		v.Status = StockOK
	}
	return v
}

type StockReport struct {
	Items []StockVerdict `json:"items"`
}

func (r StockReport) OK() bool {
	for _, v := range r.Items {
		if v.Status != StockOK {
			return false
		}
	}
	return true
}

func (r StockReport) Blocked() []StockVerdict {
	var out []StockVerdict
	for _, v := range r.Items {
		if v.Status != StockOK {
			out = append(out, v)
		}
	}
	return out
}
