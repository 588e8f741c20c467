// Package i18n holds the translatable message catalog for the stake guard:
// log/system strings plus human-readable descriptions for every reason code.
package i18n

import (
	"reflect"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting           string
	ConfigLoaded       string
	UsingDBPath        string
	ServerListening    string
	ShuttingDown       string
	ConfigLoadFailed   string
	DBInitFailed       string
	DBMigrationsFailed string
	LedgerLoadFailed   string
	APIServerError     string

	// Guard
	GuardManagerInit       string
	GuardManagerInitFailed string
	BetEvaluated           string
	BetRecorded            string
	BetRefusedCooldown     string
	BetRequiresOverride    string
	RulesUpdated           string
	PresetApplied          string
	PresetLoadFailed       string

	// Bankroll
	BankrollInitialized string
	BankrollUpdated     string
	BankrollInvalid     string

	// Behavior
	CooldownStarted string
	CooldownCleared string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
	reasonText  map[string]string
)

// English messages
var messagesEN = Messages{
	Starting:           "Starting Stake Guard...",
	ConfigLoaded:       "Config loaded (Port: %s)",
	UsingDBPath:        "Using DB path: %s",
	ServerListening:    "Server listening on :%s",
	ShuttingDown:       "Shutting down gracefully...",
	ConfigLoadFailed:   "Failed to load config: %v",
	DBInitFailed:       "Failed to init database: %v",
	DBMigrationsFailed: "Failed to apply migrations: %v",
	LedgerLoadFailed:   "Failed to load ledger: %v",
	APIServerError:     "API server error: %v",

	GuardManagerInit:       "Guard rule manager initialized",
	GuardManagerInitFailed: "Failed to init guard rule manager: %v",
	BetEvaluated:           "Bet evaluated: %s (stake=%.2f, %d reasons)",
	BetRecorded:            "Bet recorded: %s stake=%.2f on %s",
	BetRefusedCooldown:     "Bet refused: cooldown active until %s",
	BetRequiresOverride:    "Bet requires explicit override (verdict %s)",
	RulesUpdated:           "Guard rules updated",
	PresetApplied:          "Rule preset applied: %s",
	PresetLoadFailed:       "Failed to load rule presets: %v",

	BankrollInitialized: "Bankroll initialized: %.2f",
	BankrollUpdated:     "Bankroll updated: %.2f",
	BankrollInvalid:     "Bankroll must be positive",

	CooldownStarted: "Cooldown started until %s",
	CooldownCleared: "Cooldown cleared",
}

// Chinese messages
var messagesZH = Messages{
	Starting:           "正在啟動 Stake Guard...",
	ConfigLoaded:       "設定已載入（Port: %s）",
	UsingDBPath:        "使用資料庫路徑：%s",
	ServerListening:    "伺服器監聽 :%s",
	ShuttingDown:       "正在優雅關閉...",
	ConfigLoadFailed:   "載入設定失敗：%v",
	DBInitFailed:       "初始化資料庫失敗：%v",
	DBMigrationsFailed: "套用資料庫遷移失敗：%v",
	LedgerLoadFailed:   "載入投注帳本失敗：%v",
	APIServerError:     "API 伺服器錯誤：%v",

	GuardManagerInit:       "風控規則管理器已初始化",
	GuardManagerInitFailed: "初始化風控規則管理器失敗：%v",
	BetEvaluated:           "投注已評估：%s（金額=%.2f，%d 個原因）",
	BetRecorded:            "投注已記錄：%s 金額=%.2f 於 %s",
	BetRefusedCooldown:     "投注被拒：冷卻期至 %s",
	BetRequiresOverride:    "投注需要明確確認（判定 %s）",
	RulesUpdated:           "風控規則已更新",
	PresetApplied:          "已套用規則範本：%s",
	PresetLoadFailed:       "載入規則範本失敗：%v",

	BankrollInitialized: "資金已初始化：%.2f",
	BankrollUpdated:     "資金已更新：%.2f",
	BankrollInvalid:     "資金必須為正數",

	CooldownStarted: "冷卻期開始，至 %s",
	CooldownCleared: "冷卻期已解除",
}

// Reason-code descriptions shown next to each code in API responses.
var reasonTextEN = map[string]string{
	"UNIT_SIZE_CAP_EXCEEDED":                  "Stake exceeds the single-bet cap",
	"DAILY_EXPOSURE_CAP_EXCEEDED":             "Projected daily exposure exceeds the daily cap",
	"WEEKLY_EXPOSURE_CAP_EXCEEDED":            "Projected weekly exposure exceeds the weekly cap",
	"SAME_EVENT_CONCENTRATION_CAP_EXCEEDED":   "Too much staked on this single event",
	"SAME_TEAM_7D_CONCENTRATION_CAP_EXCEEDED": "Too much staked on this team over the last 7 days",
	"ACTION_FREQUENCY_CAP_EXCEEDED":           "Too many bets today",
	"HIGH_RISK_ODDS_GATE":                     "Odds are long-shot or malformed",
	"STAKE_VELOCITY_SPIKE":                    "Stake is spiking relative to recent bets",
	"FREQUENCY_SPIKE":                         "Betting frequency is spiking",
	"CONSECUTIVE_OVERRIDES_HIGH":              "Repeated warnings overridden in a row",
	"COOLDOWN_VIOLATION_HISTORY":              "Bets were placed during past cooldowns",
	"COOLDOWN_ACTIVE":                         "A cooldown is active; no bets allowed",
}

var reasonTextZH = map[string]string{
	"UNIT_SIZE_CAP_EXCEEDED":                  "單注金額超過上限",
	"DAILY_EXPOSURE_CAP_EXCEEDED":             "預計當日投注總額超過上限",
	"WEEKLY_EXPOSURE_CAP_EXCEEDED":            "預計本週投注總額超過上限",
	"SAME_EVENT_CONCENTRATION_CAP_EXCEEDED":   "單一賽事投注過度集中",
	"SAME_TEAM_7D_CONCENTRATION_CAP_EXCEEDED": "七日內對同一隊伍投注過度集中",
	"ACTION_FREQUENCY_CAP_EXCEEDED":           "當日投注次數過多",
	"HIGH_RISK_ODDS_GATE":                     "賠率屬高風險或格式錯誤",
	"STAKE_VELOCITY_SPIKE":                    "投注金額相對近期明顯飆升",
	"FREQUENCY_SPIKE":                         "投注頻率明顯飆升",
	"CONSECUTIVE_OVERRIDES_HIGH":              "連續多次忽略警告",
	"COOLDOWN_VIOLATION_HISTORY":              "曾在冷卻期內下注",
	"COOLDOWN_ACTIVE":                         "冷卻期進行中，禁止下注",
}

func init() {
	messages = &messagesEN
	reasonText = reasonTextEN
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
		reasonText = reasonTextZH
	default:
		messages = &messagesEN
		reasonText = reasonTextEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}

// ReasonText returns the human-readable description of a reason code. The
// code itself is returned when no translation exists.
func ReasonText(code string) string {
	mu.RLock()
	defer mu.RUnlock()
	if s, ok := reasonText[code]; ok {
		return s
	}
	return code
}
