// Package security decides whether a URL may be fetched at all.
//
// A Policy is compiled once from a PolicyConfig and evaluated for every
// candidate Address. The evaluation order is fixed and significant:
//
//  1. single domain pattern (when set) seeds the result
//  2. domain whitelist narrows it
//  3. TLD whitelist narrows it
//  4. the generic redirect filter narrows it, unless redirects are allowed
//  5. a blindly trusted TLD forces true
//  6. a blacklisted TLD forces false, overriding blind trust
//
// IsGenericRedirect flags paths that carry another absolute URL, including
// targets hidden under several layers of percent-encoding, which is how most
// sign-in and "continue to" links smuggle their destination.
package security
