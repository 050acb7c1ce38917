package constants

import (
	"strings"
)

type Category string

const (
	Dairy      Category = "Lácteos"
	Meat       Category = "Carnes"
	Fish       Category = "Pescados"
	Produce    Category = "Verduras"
	Beverages  Category = "Bebidas"
	DryGoods   Category = "Secos"
	Cleaning   Category = "Limpieza"
	Disposable Category = "Descartables"
	Other      Category = "Otros"
)

var allCategories = []Category{
	Dairy,
	Meat,
	Fish,
	Produce,
	Beverages,
	DryGoods,
	Cleaning,
	Disposable,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"lacteos":     Dairy,
		"leche":       Dairy,
		"quesos":      Dairy,
		"dairy":       Dairy,
		"carne":       Meat,
		"pollo":       Meat,
		"pescado":     Fish,
		"mariscos":    Fish,
		"verdura":     Produce,
		"frutas":      Produce,
		"bebida":      Beverages,
		"vinos":       Beverages,
		"almacen":     DryGoods,
		"almacén":     DryGoods,
		"descartable": Disposable,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
