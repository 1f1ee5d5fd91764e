// internal/catalog/generator.go
package catalog

import (
	"math/rand"
)

var (
	titles = []string{"The Great Gatsby", "1984", "To Kill a Mockingbird", "Pride and Prejudice", "Moby Dick",
		"War and Peace", "The Odyssey", "Ulysses", "The Catcher in the Rye", "Jane Eyre"}
	authors = []string{"F. Scott Fitzgerald", "George Orwell", "Harper Lee", "Jane Austen", "Herman Melville",
		"Leo Tolstoy", "Homer", "James Joyce", "J.D. Salinger", "Charlotte Bronte"}
	genres = []string{"Fiction", "Classic", "Drama", "Romance", "Adventure",
		"Mystery", "Fantasy", "Horror", "Science Fiction", "Biography"}
)

// probeOverflow widens the probe id range past the catalog so some
// lookups miss.
const probeOverflow = 5000

// Generator produces random catalogs and probe ids.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

// Books returns n books with ids 1..n in ascending order.
func (g *Generator) Books(n int) []Book {
	books := make([]Book, n)
	for i := range books {
		books[i] = Book{
			ID:              i + 1,
			Title:           titles[g.rng.Intn(len(titles))],
			Author:          authors[g.rng.Intn(len(authors))],
			YearPublished:   g.between(1900, 2024),
			Genre:           genres[g.rng.Intn(len(genres))],
			Price:           float64(g.between(100, 1000)),
			CopiesAvailable: g.between(1, 20),
			Rating:          float64(g.between(1, 100)) / 10,
		}
	}
	return books
}

// Shuffle permutes books in place.
func (g *Generator) Shuffle(books []Book) {
	g.rng.Shuffle(len(books), func(i, j int) { books[i], books[j] = books[j], books[i] })
}

// ProbeIDs returns n ids drawn from [1, size+5000].
func (g *Generator) ProbeIDs(n, size int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = g.between(1, size+probeOverflow)
	}
	return ids
}
