package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/cinema-booking/internal/model"
)

// MovieFilter narrows List. Empty fields disable the matching condition.
type MovieFilter struct {
	Title    string   // case-insensitive substring of the title
	GenreIDs []uint64 // movies linked to any of these genres
	ActorIDs []uint64 // movies linked to any of these actors
}

// MovieRepo persists movies together with their genre and actor links.
type MovieRepo struct {
	db *sql.DB
}

// likeEscaper makes %, _ and the escape character itself literal in a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

// WithTx runs fn in a transaction shared by every repository call made
// with the callback's context.
func (r *MovieRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

// List returns distinct movies matching f ordered by id, with genres and
// actors loaded.
func (r *MovieRepo) List(ctx context.Context, f MovieFilter) ([]model.Movie, error) {
	where := []string{}
	args := []any{}

	if t := strings.TrimSpace(f.Title); t != "" {
		where = append(where, `LOWER(m.title) LIKE ? ESCAPE '\\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(t))+"%")
	}
	if len(f.GenreIDs) > 0 {
		where = append(where, `EXISTS (SELECT 1 FROM movie_genres mg WHERE mg.movie_id = m.id AND mg.genre_id IN (`+placeholders(len(f.GenreIDs))+`))`)
		args = append(args, idArgs(f.GenreIDs)...)
	}
	if len(f.ActorIDs) > 0 {
		where = append(where, `EXISTS (SELECT 1 FROM movie_actors ma WHERE ma.movie_id = m.id AND ma.actor_id IN (`+placeholders(len(f.ActorIDs))+`))`)
		args = append(args, idArgs(f.ActorIDs)...)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	q := conn(ctx, r.db)
	rows, err := q.QueryContext(ctx,
		`SELECT m.id, m.title, m.description, m.duration FROM movies m WHERE `+cond+` ORDER BY m.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Movie{}
	for rows.Next() {
		var m model.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Duration); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachMovieLinks(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns one movie with genres and actors.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (*model.Movie, error) {
	q := conn(ctx, r.db)
	var m model.Movie
	err := q.QueryRowContext(ctx,
		`SELECT id, title, description, duration FROM movies WHERE id = ?`, id).
		Scan(&m.ID, &m.Title, &m.Description, &m.Duration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	list := []model.Movie{m}
	if err := attachMovieLinks(ctx, q, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// Create inserts m and links it to the given genres and actors in one
// transaction. Unknown ids yield ErrUnknownReference.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie, genreIDs, actorIDs []uint64) error {
	return withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		res, err := q.ExecContext(ctx,
			`INSERT INTO movies (title, description, duration) VALUES (?, ?, ?)`,
			m.Title, m.Description, m.Duration)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		m.ID = uint64(id)
		if err := replaceLinks(ctx, q, m.ID, genreIDs, actorIDs); err != nil {
			return err
		}
		return r.reload(ctx, q, m)
	})
}

// Update rewrites the movie row and replaces its links.
func (r *MovieRepo) Update(ctx context.Context, m *model.Movie, genreIDs, actorIDs []uint64) error {
	return withTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		res, err := q.ExecContext(ctx,
			`UPDATE movies SET title = ?, description = ?, duration = ? WHERE id = ?`,
			m.Title, m.Description, m.Duration, m.ID)
		if err != nil {
			return err
		}
		if err := affectedOrNotFound(res, ErrMovieNotFound); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM movie_genres WHERE movie_id = ?`, m.ID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM movie_actors WHERE movie_id = ?`, m.ID); err != nil {
			return err
		}
		if err := replaceLinks(ctx, q, m.ID, genreIDs, actorIDs); err != nil {
			return err
		}
		return r.reload(ctx, q, m)
	})
}

// Delete removes a movie. A movie with sessions yields ErrConflict.
func (r *MovieRepo) Delete(ctx context.Context, id uint64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		if isReferenced(err) {
			return ErrConflict
		}
		return err
	}
	return affectedOrNotFound(res, ErrMovieNotFound)
}

func (r *MovieRepo) reload(ctx context.Context, q querier, m *model.Movie) error {
	list := []model.Movie{*m}
	if err := attachMovieLinks(ctx, q, list); err != nil {
		return err
	}
	*m = list[0]
	return nil
}

func replaceLinks(ctx context.Context, q querier, movieID uint64, genreIDs, actorIDs []uint64) error {
	if err := insertLinks(ctx, q, "movie_genres", "genre_id", movieID, genreIDs); err != nil {
		return err
	}
	return insertLinks(ctx, q, "movie_actors", "actor_id", movieID, actorIDs)
}

func insertLinks(ctx context.Context, q querier, table, column string, movieID uint64, ids []uint64) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO " + table + " (movie_id, " + column + ") VALUES ")
	args := make([]any, 0, len(ids)*2)
	for i, id := range ids {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?)")
		args = append(args, movieID, id)
	}
	if _, err := q.ExecContext(ctx, sb.String(), args...); err != nil {
		if isMissingReference(err) {
			return ErrUnknownReference
		}
		return err
	}
	return nil
}

// attachMovieLinks loads genres and actors for every movie in ms with one
// query per link table.
func attachMovieLinks(ctx context.Context, q querier, ms []model.Movie) error {
	if len(ms) == 0 {
		return nil
	}
	index := make(map[uint64][]int, len(ms))
	ids := make([]uint64, 0, len(ms))
	for i := range ms {
		ms[i].Genres = []model.Genre{}
		ms[i].Actors = []model.Actor{}
		if _, seen := index[ms[i].ID]; !seen {
			ids = append(ids, ms[i].ID)
		}
		index[ms[i].ID] = append(index[ms[i].ID], i)
	}
	in := placeholders(len(ids))

	rows, err := q.QueryContext(ctx, `SELECT mg.movie_id, g.id, g.name
		FROM movie_genres mg
		JOIN genres g ON g.id = mg.genre_id
		WHERE mg.movie_id IN (`+in+`)
		ORDER BY g.id`, idArgs(ids)...)
	if err != nil {
		return err
	}
	for rows.Next() {
		var movieID uint64
		var g model.Genre
		if err := rows.Scan(&movieID, &g.ID, &g.Name); err != nil {
			rows.Close()
			return err
		}
		for _, i := range index[movieID] {
			ms[i].Genres = append(ms[i].Genres, g)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	rows, err = q.QueryContext(ctx, `SELECT ma.movie_id, a.id, a.first_name, a.last_name
		FROM movie_actors ma
		JOIN actors a ON a.id = ma.actor_id
		WHERE ma.movie_id IN (`+in+`)
		ORDER BY a.id`, idArgs(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var movieID uint64
		var a model.Actor
		if err := rows.Scan(&movieID, &a.ID, &a.FirstName, &a.LastName); err != nil {
			return err
		}
		for _, i := range index[movieID] {
			ms[i].Actors = append(ms[i].Actors, a)
		}
	}
	return rows.Err()
}

func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
