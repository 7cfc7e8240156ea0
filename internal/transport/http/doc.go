// Package http implements the HTTP handlers of the reconciliation service.
//
// Handlers stay thin: they parse multipart uploads and path parameters,
// delegate to the services layer, and render either JSON bodies through
// go-chi/render or file downloads. Every error goes through
// errors.ErrorHandler so clients always receive RFC 7807 problem details.
//
// Routes:
//
//	POST   /api/sessions                  create a staged session
//	GET    /api/sessions/{id}             session summary
//	DELETE /api/sessions/{id}             restart
//	POST   /api/sessions/{id}/zqm         upload ZQM, run the filter
//	GET    /api/sessions/{id}/zqm/export  filtered ZQM workbook
//	POST   /api/sessions/{id}/pmr         upload PMR, run the enricher
//	POST   /api/sessions/{id}/soh         upload SOH, aggregate and classify
//	GET    /api/sessions/{id}/export      final workbook or MASTER csv
//	POST   /api/reconcile                 one-shot reconciliation
package http
