// Package store is the site's data-access layer.
//
// A Store turns a small set of operations (pattern lookups, projections,
// NULL filters, column introspection, existence checks, insert, update,
// delete and id aggregates) into SQL for MySQL, PostgreSQL or SQLite and
// returns results as ResultSets of dynamically typed Values.
//
// Table identifiers are interpolated into the generated SQL, so every
// operation first checks the table against an Allowlist and fails with
// ErrTableNotAllowed before touching the database. Caller data (patterns,
// values, filter values) is always bound as a parameter. Column identifiers
// are trusted unless the Allowlist restricts columns for that table.
//
// Example:
//
//	st, err := store.New(db, store.NewAllowlist("users", "pages"))
//	if err != nil {
//	    return err
//	}
//	rows, err := st.GetLike(ctx, "users", "name", "Ali%")
//	if err != nil {
//	    return err
//	}
//	for _, row := range rows {
//	    id, _ := store.Decode[int64](row[0])
//	    name, _ := store.DecodeOptional[string](row[1])
//	    ...
//	}
//
// Writes can be announced through a ChangeNotifier and statement timings
// through a StatementObserver; both are optional.
package store
