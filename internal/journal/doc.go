// Package journal keeps a durable record of helper operations in SQLite.
//
// Every Connect, subscription wait and Publish is written to the
// operation_journal table with its result code, outcome label and
// duration, so failures can be inspected after the process exits.
//
// Recorder is a helper.Observer that queues entries and writes them from
// its own goroutine; SQLiteRepository reads them back for the journal
// commands.
//
//	repo := journal.NewSQLiteRepository(db.DB)
//	rec := journal.NewRecorder(repo, logger, 256)
//	go rec.Run(ctx)
//	h := helper.New(opts, transport, logger, helper.WithObservers(rec))
package journal
