// Package telegram sends meeting announcements through the Telegram Bot API.
//
// Messages are HTML formatted. Authentication requires a bot token (from
// @BotFather) and a chat ID.
package telegram
