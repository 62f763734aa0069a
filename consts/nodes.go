package consts

const (
	// 入口与路由
	Intake  = "intake"
	Confirm = "confirm"
	Route   = "route"

	// 证据
	Fetch   = "fetch"
	Narrate = "narrate"

	// 多空研究与评分
	Stances = "stances"
	Bull    = "bull_analyst"
	Bear    = "bear_analyst"
	Score   = "score"

	// 报告与质检
	Compose  = "compose"
	Critique = "critique"
	Rubric   = "rubric"
	Revise   = "revise"

	// 单次调用对照
	Mono = "mono"
)
