package structstream

// Version is the published library version.
// 0.4.0: Breaking - Session.Run takes a FragmentSource; add NewSSESource and
// NewNDJSONSource transport adapters with a shared wire-record shape.
// 0.3.0: Add StreamTimeouts (TTFB/idle/total) treated as transport failures.
// 0.2.0: Add CompletenessPolicy.MinFieldLengths to hold back items whose
// free-text fields are still streaming.
const Version = "0.4.0"
