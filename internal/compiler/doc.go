// Package compiler turns tree descriptions into assets: validated, reusable
// sources from which any number of independent graph instances are built
// through the node kind registry.
package compiler
