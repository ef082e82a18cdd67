// Package agent contains the model-facing pieces of the triage pipeline:
// the helper agents that gather context, the compiler that fans them out,
// the parser that turns raw model output into actions, and the assistant
// driver that runs the multi-turn tool loop.
//
// The pipeline for a single chat event is:
//
//	Compiler.Compile -> Driver.Run -> ParseResponse -> dispatch
//
// Compile gathers everything the assistant needs (channel directive, stored
// context, thread history, web and message search findings) into a
// core.CompiledContext. Run feeds that context to the assistant model,
// parses each response into actions, hands the actions to a dispatch
// callback, and loops while tool calls produce outputs the model has not
// yet seen.
package agent
