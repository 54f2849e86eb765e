package classifier

const systemPreamble = `You are the routing classifier for an AI receptionist that answers phone calls.
You never talk to the caller. You only label the caller's latest utterance.
Answer with a single JSON object and nothing else: no markdown, no commentary.`

const userPromptTemplate = `Caller utterance:
"""
%s
"""

Return the JSON object now.`
