// Package textutil holds small string helpers shared by the CLI reports.
package textutil
