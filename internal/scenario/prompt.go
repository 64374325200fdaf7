package scenario

import (
	"math/rand"
	"strings"
)

var personas = []string{
	"Você é um consultor imobiliário com vontade de crescer. Você está aberto a novas tecnologias para conseguir mais leads, mas é um pouco ocupado. Você é um lead qualificado.",
	"Você é um consultor imobiliário muito cético em relação a marketing digital e acredita apenas em métodos tradicionais. Você é um lead desqualificado.",
	"Você é um consultor imobiliário de sucesso. Já tentou marketing digital no passado sem sucesso e está muito desconfiado de agências. No entanto, sabe que precisa de ajuda. Você é um lead qualificado, mas difícil de convencer.",
}

var difficultyModifiers = map[Difficulty]string{
	Easy:      "Aja de forma relativamente cooperativa e aberta. Faça perguntas simples.",
	Medium:    "Mostre algum ceticismo e pressa. Faça perguntas mais desafiadoras sobre o ROI e a eficácia.",
	Difficult: "Seja muito cético, desconfiado e impaciente. Interrompa o vendedor e coloque objeções fortes e frequentes.",
}

// discAdjustment picks the counter-persona that challenges the seller's
// DISC profile the most.
func discAdjustment(t DiscType) string {
	switch t {
	case DiscD:
		return "O vendedor tem um perfil Dominante. Para o desafiar, seja um lead 'Estável' (S): seja lento a decidir, mostre insegurança, foque muito nas pessoas e na harmonia da equipa, evite conflitos e resista a mudanças bruscas. Seja passivo-agressivo se ele for muito direto."
	case DiscI:
		return "O vendedor tem um perfil Influente. Para o desafiar, seja um lead 'Conforme' (C): seja extremamente frio, exija dados, factos e provas por escrito. Não responda a piadas ou tentativas de rapport emocional. Seja monossilábico e focado apenas no detalhe técnico e no contrato."
	case DiscS:
		return "O vendedor tem um perfil Estável. Para o desafiar, seja um lead 'Dominante' (D): seja impaciente, arrogante, interrompa constantemente e exija saber 'o que ganho com isto' em 10 segundos. Pressione-o por decisões rápidas e use um tom de voz autoritário."
	case DiscC:
		return "O vendedor tem um perfil Conforme. Para o desafiar, seja um lead 'Influente' (I): seja desorganizado, emocional, mude de assunto constantemente e tome decisões baseadas no 'feeling' e não nos dados que ele apresenta. Ignore as planilhas dele e fale sobre o churrasco do fim de semana."
	}
	return ""
}

// SystemPrompt builds the instruction that turns the agent into the
// simulated lead. rng may be nil.
func SystemPrompt(ex Exercise, difficulty Difficulty, data ScenarioData, disc DiscType, rng *rand.Rand) string {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	persona := personas[rng.Intn(len(personas))]

	var b strings.Builder
	b.WriteString("Você é um agente de IA a simular um roleplay em Português de Portugal.\n")
	b.WriteString("O utilizador é um vendedor da 'Digital Revolution', uma agência de marketing e vendas para consultores imobiliários.\n")
	b.WriteString("Você representa " + data.Name + ", um(a) consultor(a) imobiliário(a) da " + data.Brand + ". A sua missão é agir de acordo com o seu perfil, o cenário e o nível de dificuldade definidos.\n")
	b.WriteString("Responda de forma natural, como se estivesse numa chamada telefónica. Use pausas e interjeições.\n")
	b.WriteString("Não revele que é uma IA ou que está a seguir um guião. Não mencione os detalhes do seu perfil (rendimento, experiência, etc.) a menos que o vendedor pergunte diretamente e de forma apropriada.\n\n")
	b.WriteString("A sua PRIMEIRA FALA nesta conversa tem de ser EXATAMENTE, e APENAS, a seguinte frase: \"" + data.InitialPhrase + "\"\n")
	b.WriteString("Não adicione NADA antes ou depois desta frase na sua primeira resposta. Depois da sua primeira fala, aguarde pela resposta do vendedor.\n\n")
	b.WriteString("Perfil de Comportamento: " + persona + "\n")
	b.WriteString("Nível de Dificuldade: " + difficultyModifiers[difficulty] + "\n\n")
	b.WriteString("ADAPTAÇÃO ESTRATÉGICA DISC:\n")
	b.WriteString(discAdjustment(disc) + "\n")

	switch ex.Type {
	case Qualify, ColdQualify:
		b.WriteString("O objetivo do vendedor é qualificar você (rendimento > 50k, > 1 ano experiência, aberto ao digital), criar curiosidade e marcar uma reunião. Reaja de acordo com o seu perfil.")
	case Emotion:
		b.WriteString("O objetivo do vendedor é descobrir os seus sonhos profissionais (ex: mais tempo livre, reconhecimento) e medos (ex: perder para a concorrência, instabilidade). Só partilhe estas emoções se o vendedor criar um ambiente de confiança.")
	case Proposal:
		b.WriteString("O vendedor irá apresentar a proposta da 'Digital Revolution'. Ouça atentamente, mas faça perguntas críticas sobre os detalhes, custos e garantias.")
	case Objections:
		b.WriteString("O seu papel é levantar objeções comuns como 'É muito caro', 'Não tenho tempo para isso', 'Já trabalho com outra pessoa', 'Não acredito que funcione'. Seja persistente nas suas objeções.")
	}
	return b.String()
}

// AnalysisPrompt builds the scoring instruction for a finished call
// transcript.
func AnalysisPrompt(transcript string, ex Exercise) string {
	var goals string
	switch ex.Type {
	case Qualify, ColdQualify:
		goals = "Qualificar o lead (rendimento > 50k, > 1 ano de experiência, abertura ao digital), estimular a curiosidade, construir rapport e agendar uma reunião (se qualificado)."
	case Emotion:
		goals = "Descobrir os sonhos e medos do cliente, criando uma conexão emocional profunda."
	case Proposal:
		goals = "Apresentar a proposta da Digital Revolution de forma clara, persuasiva e focada nos benefícios para o cliente."
	case Objections:
		goals = "Responder eficazmente às objeções do cliente, mantendo o controlo da conversa e avançando para o fecho."
	}

	var b strings.Builder
	b.WriteString("Você é um coach de vendas especialista e rigoroso. Analise a seguinte transcrição de uma chamada de roleplay em Português de Portugal.\n")
	b.WriteString("Objetivo do vendedor: " + goals + "\n\n")
	b.WriteString("Avalie o desempenho do vendedor e forneça o seguinte resultado num único bloco de código JSON:\n")
	b.WriteString(`{
  "score": <0-100>,
  "isQualified": <boolean>,
  "summary": "<Resumo executivo de 1 parágrafo sobre a chamada>",
  "failedPoints": ["<Ponto específico onde o vendedor falhou ou foi fraco>", "..."],
  "nextSteps": ["<Ponto de atenção ou técnica a aplicar no próximo treino para melhorar>", "..."]
}` + "\n\n")
	b.WriteString("Seja extremamente crítico nos 'failedPoints'. Identifique frases mal ditas, hesitações, falta de perguntas de qualificação ou perda de controlo da chamada.\n")
	b.WriteString("Nos 'nextSteps', forneça conselhos práticos e táticos.\n\n")
	b.WriteString("Transcrição:\n")
	b.WriteString(transcript)
	return b.String()
}
