package model

import "time"

// Product is a catalogue entry as seen by the order flow. Price is in minor currency units.
type Product struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Price     int64     `json:"price" db:"price"`
	Category  string    `json:"category" db:"category"`
	Stock     int       `json:"stock" db:"stock"`
	Image     *string   `json:"image,omitempty" db:"image"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Available reports whether at least one unit can be sold.
func (p *Product) Available() bool {
	return p.Active && p.Stock > 0
}
