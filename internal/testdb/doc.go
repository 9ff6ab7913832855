// Package testdb provides helpers for PostgreSQL integration tests.
//
// Each test runs inside its own transaction that is rolled back when the
// test finishes, so tests can share one database and run in parallel:
//
//	func TestSomething(t *testing.T) {
//	    t.Parallel()
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        s := postgres.NewDocumentStore(tx, nil)
//	        // ...
//	    })
//	}
//
// Tests are skipped unless DATABASE_URL or DOCFLOW_TEST_DB_URL is set.
package testdb
