package extractor

const classifierSystemPrompt = `You classify answers by topic.
You receive a question and a list of answers given to it by people. Each answer is a JSON object with the keys "index" and "answer".
Find every answer that does NOT actually answer the question and report its "index" value.`

const classifierPrompt = `Example: given the answer
  {"index": "answer1", "answer": "Amazon EC2 bare metal instances provide direct access to the processor and memory of the underlying server."}
If that answer does not address the question, report it as {"off_topic_answers": ["answer1"]}.
When several answers are off-topic, list all of their index values.
When every answer addresses the question, report {"off_topic_answers": ["-1"]}.

Answers:
<answer_json>
%s
</answer_json>

Question:
<input_question>
%s
</input_question>

Return ONLY one JSON object of the form {"off_topic_answers": [...]}.
Do not explain. Do not wrap the JSON in backticks.`

const summarizerSystemPrompt = `You write concise, faithful summaries of spoken answers.
Use only what the answers say. Do not add outside knowledge.`

const summarizerPrompt = `Below are several answers to the same question, each inside its own <input_text_N> tags.

%s
Question: %s

Write one summary that combines the points the answers have in common and notes any important differences.
Put the summary inside <summary></summary> tags.`
