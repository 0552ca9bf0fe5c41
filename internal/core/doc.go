// Package core holds the business logic of the Excel analytics backend.
//
// It sits between the HTTP layer and persistence and can be driven by web
// handlers, the CLI or tests without modification. Persistence is reached
// through the [Store] interface; workbook parsing goes through an
// [ingest.Gateway].
//
// # Service
//
// [Service] is the entry point for every operation:
//
//   - Accounts: [Service.Register], [Service.Login], [Service.Authenticate]
//     and the profile operations.
//   - Uploads: [Service.UploadExcel] parses under the [UploadLimiter] and
//     stores the records; the file stays on disk until the upload is deleted.
//   - Charts: [Service.GenerateChart] validates axes against the upload's
//     columns and derives chart data when the client sends none.
//   - Admin: user management, bulk deletes, [Service.Analytics] and the
//     in-process [Settings].
//
// # Activity Log
//
// Every state change records an [Activity]. Recording is best effort: a
// failed write is logged and never fails the operation. Old entries and the
// files of deleted uploads are cleaned up by [Service.StartRetentionScheduler].
//
// # Error Handling
//
// Domain failures are sentinel errors ([ErrNotFound], [ErrEmailTaken], ...)
// compared with errors.Is. [MapError] turns any error into a [UserMessage]
// with a support code.
package core
