package identify

import "github.com/ovelo/moovy-go/internal/model/stream"

// SeedCatalog 返回模拟后端内置的识别结果样本。
func SeedCatalog() []stream.VideoResult {
	return []stream.VideoResult{
		{
			ID:          "tt0133093",
			Title:       "The Matrix",
			PosterURL:   "https://image.tmdb.org/t/p/w500/f89U3ADr1oiB1s9GkdPOEpXUk5H.jpg",
			Year:        1999,
			Director:    "Lana Wachowski, Lilly Wachowski",
			Genre:       "Science Fiction",
			Description: "A computer hacker learns the world he lives in is a simulation.",
			IMDBRating:  8.7,
			Duration:    "2h 16m",
			Source:      "camera",
		},
		{
			ID:          "tt1375666",
			Title:       "Inception",
			PosterURL:   "https://image.tmdb.org/t/p/w500/9gk7adHYeDvHkCSEqAvQNLV5Uge.jpg",
			Year:        2010,
			Director:    "Christopher Nolan",
			Genre:       "Science Fiction",
			Description: "A thief steals corporate secrets through dream-sharing technology.",
			IMDBRating:  8.8,
			Duration:    "2h 28m",
			Source:      "camera",
		},
		{
			ID:          "tt0110912",
			Title:       "Pulp Fiction",
			PosterURL:   "https://image.tmdb.org/t/p/w500/d5iIlFn5s0ImszYzBPb8JPIfbXD.jpg",
			Year:        1994,
			Director:    "Quentin Tarantino",
			Genre:       "Crime",
			Description: "The lives of two mob hitmen, a boxer and a pair of diner bandits intertwine.",
			IMDBRating:  8.9,
			Duration:    "2h 34m",
			Source:      "camera",
		},
	}
}
