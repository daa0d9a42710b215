// Package routes maps logical route keys such as "main.home" to concrete
// client paths per platform (mini-program, mobile web, admin console), so the
// server can emit Navigate directives without knowing each frontend's layout.
package routes
