// Package matcher scores and ranks failure patterns against observed error
// text.
//
// The confidence algorithm is a pure function of (errorText, signatures,
// indicators, context), with no I/O:
//
//  1. Exact pass: the first case-insensitive signature regex that matches
//     the error text sets the base score to 0.8 and stops the scan.
//  2. Fuzzy fallback: only when no strong exact hit exists, every signature
//     is compared by normalized Levenshtein similarity; candidates above
//     the 0.6 similarity threshold score similarity*0.6, and the maximum
//     across all signatures wins (signature order never affects the
//     result).
//  3. Context bonus: each satisfied confidence indicator adds 0.15. The
//     accumulation is uncapped before the final clamp to 1.0.
package matcher
