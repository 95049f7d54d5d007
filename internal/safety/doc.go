// Package safety decides whether a proposed input action may run.
//
// A single Gatekeeper is constructed per session and shared by reference
// between every producer of actions: automation loops, interactive commands,
// scripts. Each proposal goes through exactly one ValidateAction call, which
// evaluates in a fixed order:
//
//  1. Emergency stop. While stopped, every action is denied.
//  2. Risk classification by the configured Checker.
//  3. Sliding-window rate limiting keyed by action kind (1s and 60s caps).
//  4. Combination: allowed when the risk is below the allow threshold and
//     the rate limit was not hit. High risk additionally asks for
//     confirmation.
//
// Denials are ordinary Decision values, never errors. Errors are reserved
// for configuration problems, which New reports before the gatekeeper is
// usable.
//
// A timestamp enters the rate window only when the rate check passes, even
// if the action is then denied for its risk. Rejected bursts therefore do
// not extend their own penalty.
package safety
