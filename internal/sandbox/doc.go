// Package sandbox runs the small Python-flavoured snippets attached to states
// and transitions.
//
// Snippets are split into statements here and each expression is parsed and
// compiled with expr. Every operator is rewritten into a call so values are
// typed only when the snippet runs: 'a' + 1 fails with a TypeError at run
// time, 7 // 2 is 3 and 0 or 5 is 5.
package sandbox
