// Package prompts contains the prompt text LocalAgent sends to models.
//
// Prompt text is Go code rather than config files because it is program
// logic: templates use fmt.Sprintf interpolation, are embedded at compile
// time, and are covered by tests.
//
// Convention: each prompt category gets its own file (system.go for the
// identity block, modifiers.go for behavior-modifier injections,
// context.go for the per-turn context blocks) with exported functions
// that accept the dynamic parts and return the interpolated text.
package prompts
