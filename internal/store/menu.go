package store

import (
	"context"
	"fmt"

	"restoassist/internal/db"
)

type MenuItem struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    *string `json:"category"`
	Description *string `json:"description,omitempty"`
}

func strPtr(s string) *string { return &s }

// SampleMenu is served when no database is reachable.
func SampleMenu() []MenuItem {
	return []MenuItem{
		{ID: 1, Name: "Pizza Margherita", Price: 25.00, Category: strPtr("pizza")},
		{ID: 2, Name: "Spaghetti Carbonara", Price: 28.00, Category: strPtr("pasta")},
		{ID: 3, Name: "Caesar Salad", Price: 22.00, Category: strPtr("salad")},
	}
}

// ListMenu returns active menu items ordered by category, then name.
func ListMenu(ctx context.Context, q db.Querier) ([]MenuItem, error) {
	rows, err := q.Query(ctx, `
		select id, name, price::float8, category, description
		from menu_items
		where is_active
		order by category, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	defer rows.Close()

	out := []MenuItem{}
	for rows.Next() {
		var it MenuItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.Category, &it.Description); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	return out, nil
}
