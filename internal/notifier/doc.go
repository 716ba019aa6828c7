// Package notifier posts newly published landmarks commission meetings.
//
// TwitterNotifier authenticates with OAuth1 credentials from the environment
// and posts one tweet per meeting. TelegramNotifier sends HTML messages to a
// chat, collapsing large batches into a digest. DryRunNotifier prints the
// tweet text instead, which is what the notify command uses with --dry-run.
package notifier
