// Package awakener is an activation engine for an autonomous LLM agent: a
// supervised loop that repeatedly wakes the agent, lets it drive a real
// Linux host through tools, records what happened, and maintains a
// structured world-model so the next wake-up starts with accurate
// situational awareness.
//
// The core pieces are the Scheduler (round lifecycle), the ToolLoop
// (streamed LLM conversation with sequential tool dispatch), the Memory
// and Snapshot stores (timeline shards, YAML world-model, activity feed),
// the Bus (ordered event fan-out to operators), and the stealth layer
// (package stealth), which keeps the runtime itself invisible to the agent
// it drives.
//
// Tools live in sub-packages under tools/ and implement the Tool
// interface; LLM backends implement Provider, with the OpenAI-compatible
// implementation in provider/openaicompat and model-string routing in
// provider/resolve.
package awakener
