package seeders

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/electrohogar/catalogo/app/models"
	"github.com/electrohogar/catalogo/internal/catalog"
)

// ProductCount controls how many random products the seeder inserts.
// The CLI overrides it via the seed command argument.
var ProductCount = 10

var categories = []string{
	"Frigorífico", "Lavadora", "Microondas", "Horno", "Televisor", "Lavavajillas",
}

func init() {
	Register("productos", SeedProductos)
}

// RandomProduct builds one plausible catalog entry. Prices land between
// 50 and 1050 with two decimals; roughly 70% of products are in stock
// and 30% carry a defect.
func RandomProduct(rng *rand.Rand) models.Record {
	category := categories[rng.Intn(len(categories))]

	stock := 0
	if rng.Float64() < 0.7 {
		stock = rng.Intn(20) + 1
	}

	return models.Record{
		Name:      fmt.Sprintf("%s %d", category, rng.Intn(1000)),
		Category:  category,
		Price:     math.Round((rng.Float64()*1000+50)*100) / 100,
		Stock:     stock,
		HasDefect: rng.Float64() < 0.3,
	}
}

// SeedProductos inserts ProductCount random products through the gateway.
func SeedProductos(ctx context.Context, gw catalog.Gateway) error {
	rng := rand.New(rand.NewSource(rand.Int63()))

	for i := 0; i < ProductCount; i++ {
		doc := models.CreatePayload(RandomProduct(rng))
		if _, err := gw.Create(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}
