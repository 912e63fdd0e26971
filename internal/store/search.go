package store

// SearchResult is one full-text match.
type SearchResult struct {
	ID          PackageID `json:"id"`
	Ecosystem   string    `json:"ecosystem"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

// Search runs a full-text query over the packages projection
// (ecosystem, name, description, keywords), best matches first.
func (s *Store) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT p.id, p.ecosystem, p.name, COALESCE(p.description, '')
		FROM packages_fts f
		JOIN packages p ON p.id = f.rowid
		WHERE packages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var id int64
		if err := rows.Scan(&id, &r.Ecosystem, &r.Name, &r.Description); err != nil {
			return nil, err
		}
		r.ID = PackageID(id)
		results = append(results, r)
	}
	return results, rows.Err()
}
