// Package ir provides the expression-tree form of WebAssembly function
// bodies consumed by effect analysis.
//
// Lift turns a decoded body into a tree of Expr nodes: operands become
// children, structured control flow becomes Block, Loop and If nodes, and
// branches refer to their target by label name instead of by depth.
//
// # Labels
//
// Only constructs that some branch targets carry a label. A branch to an
// if is expressed as a branch to a labelled Block wrapping the If, and a
// branch to the function body targets the body Block itself.
//
// # Evaluation order
//
// Children of a node are evaluated left to right, in the order Children
// returns them. When a statement is emitted while earlier values are still
// pending on the operand stack, those values are first spilled to scratch
// locals so that the tree evaluates them before the statement.
package ir
